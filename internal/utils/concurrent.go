package utils

import "sync"

// ExecuteConcurrently runs every task in its own goroutine and returns their
// errors in task order.
func ExecuteConcurrently(tasks []func() error) []error {
	var wg sync.WaitGroup

	errs := make([]error, len(tasks))

	wg.Add(len(tasks))

	for i, task := range tasks {
		go func(i int, task func() error) {
			defer wg.Done()

			errs[i] = task()
		}(i, task)
	}

	wg.Wait()

	return errs
}
