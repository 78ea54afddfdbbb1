package main

import (
	"flag"
	"log"
	"os"

	"github.com/df07/go-surface-scatter/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	jobsDir := flag.String("jobs", "jobs", "Directory searched for job files")
	flag.Parse()

	// Create and start web server
	webServer := server.NewServer(*port, *jobsDir)

	log.Printf("Surface Scatter Web Server")
	log.Printf("Stream a job from http://localhost:%d/api/scatter/stream?job=meadow", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
