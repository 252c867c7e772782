package pool

import "time"

type retryTask struct {
	task          Task
	numTries      int
	sleepDuration time.Duration
}

// Retry wraps t so that a failing Execute is tried up to numTries times,
// sleeping sleepDuration between attempts on the worker. Only the last error
// reaches OnFailure. Panics are not retried.
func Retry(t Task, numTries int, sleepDuration time.Duration) Task {
	return &retryTask{
		task:          t,
		numTries:      max(numTries, 1),
		sleepDuration: sleepDuration,
	}
}

func (r *retryTask) Execute() (err error) {
	for i := 0; i < r.numTries; i++ {
		if err = r.task.Execute(); err == nil {
			return nil
		}

		if i < r.numTries-1 {
			time.Sleep(r.sleepDuration)
		}
	}

	return err
}

func (r *retryTask) OnFailure(err error) {
	r.task.OnFailure(err)
}
