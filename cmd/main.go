package main

import (
	"github.com/netbox-metrics/cmd/agent"
)

func main() {
	agent.Execute()
}
