package main

import "github.com/MeKo-Tech/mathocr/cmd/mathocr/cmd"

func main() {
	cmd.Execute()
}
