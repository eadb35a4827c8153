package main

import (
	"log"

	corecmd "github.com/m3rciful/pricebot/core/cmd"
	"github.com/m3rciful/pricebot/internal/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return app.LoadConfig(path)
		},
		Bootstrap: app.Bootstrap,
	})
	if err != nil {
		log.Fatalf("pricebot: %v", err)
	}
}
