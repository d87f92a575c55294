package main

import (
	"log"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"seoaudit/cmd/seo-audit/app"
	"seoaudit/internal/pacer"
)

func main() {
	_ = godotenv.Load()

	httpClient := &http.Client{}
	clock := pacer.NewClock()

	err := app.Run(os.Args, os.Stdout, os.Stderr, httpClient, clock)
	if err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
