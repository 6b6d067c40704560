package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("CREWSTAY_TEST_MODE") == "" {
			_ = os.Setenv("CREWSTAY_TEST_MODE", "1")
		}
	})
}
