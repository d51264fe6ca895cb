/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "datemate/cmd"

func main() {
	cmd.Execute()
}
