package main

import (
	"github.com/openclass/dbans/internal/cmd"
)

func main() {
	cmd.Execute()
}
