package main

import (
	"github.com/ColonelBlimp/raudio/cmd"
	"github.com/ColonelBlimp/raudio/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
