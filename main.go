/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/wanderlog/apiserver/cmd"

func main() {
	cmd.Execute()
}
