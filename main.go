package main

import (
	"github.com/webalive/deployer/cmd/root"
)

func main() {
	root.Execute()
}
