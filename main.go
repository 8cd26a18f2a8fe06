package main

import (
	"github.com/waconnect/app/cmd"
)

// @title WhatsApp Connection API
// @version 1.0
// @description Creates gateway-backed WhatsApp connections, serves their pairing QR codes and tracks pairing.

// @host  localhost:8000
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cmd.StartApp()
}
