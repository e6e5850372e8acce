package main

import (
	"fmt"

	"github.com/netnexus/controlplane/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
