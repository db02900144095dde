// The litepcie command runs DMA loopback verification benches.
package main

import (
	"github.com/joho/godotenv"
	"github.com/tebeka/atexit"
)

func main() {
	// A .env file can preset LITEPCIE_* environment variables. Missing files
	// are fine.
	_ = godotenv.Load()

	Execute()

	atexit.Exit(0)
}
