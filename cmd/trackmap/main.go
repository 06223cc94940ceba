package main

import "github.com/MeKo-Tech/trackmap/internal/cmd"

func main() {
	cmd.Execute()
}
