package main

import (
	"log"

	"github.com/km-arc/go-laravel-container/app"
	foundation "github.com/km-arc/go-laravel-container/framework/app"
)

func main() {
	application, err := foundation.New() // loads .env automatically
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}

	if err := application.Register(&app.AppServiceProvider{
		Seed: []app.User{
			{ID: "1", Name: "Alice"},
			{ID: "2", Name: "Bob"},
		},
	}); err != nil {
		log.Fatalf("register: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatal(err)
	}
}
