package main

import (
	"kmeansviz/cmd/handlers"
	"kmeansviz/internal/logger"
)

func main() {
	logger.Init() // Initialize the logger
	handlers.Execute()
}
