package main

import (
	"flag"
	"log"
	"os"

	"github.com/df07/go-sky-scattering/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	scenesDir := flag.String("scenes", "scenes", "Directory with .scene files (empty disables them)")
	flag.Parse()

	// Create and start web server
	webServer := server.NewServer(*port, *scenesDir)

	log.Printf("Sky Scattering Web Server")
	log.Printf("Try http://localhost:%d/api/render?scene=surface_view_dusk", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
