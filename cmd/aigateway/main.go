// Package main is the entry point for the AI gateway.
//
// @title          aigateway API
// @version        1.0
// @description    Gateway exposing chat, image analysis and age estimation over a local Ollama server or Google Gemini.
// @license.name   MIT
// @BasePath       /
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
