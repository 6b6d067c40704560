package main

import (
	"testing"

	"github.com/crewstay/crewstay/internal/app"
	_ "github.com/crewstay/crewstay/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	if !app.InTestMode() {
		t.Fatal("expected test mode")
	}
	main()
}
