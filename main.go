package main

import (
	"os"

	"github.com/libreviews/revdal/app"
)

func main() {
	err := app.Execute()
	if err != nil {
		os.Exit(1)
	}
}
