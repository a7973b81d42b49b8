package main

import (
	"log"

	"github.com/MrSnakeDoc/nekogallery/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		log.Fatalf("❌ gallery failed to start: %v", err)
	}
	if err := a.Run(); err != nil {
		log.Fatalf("❌ gallery stopped with error: %v", err)
	}
}
