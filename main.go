package main

import (
	api "github.com/openmart/inventory/cmd/api"
)

func main() {
	api.StartServer()
}
