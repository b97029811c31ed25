package capture

import "fmt"

func recoveredError(recovered interface{}) error {
	if err, ok := recovered.(error); ok {
		return err
	}

	return fmt.Errorf("panic: %v", recovered)
}
