package main

import (
	"os"

	"github.com/oslokommune/okdata-permission-api/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
