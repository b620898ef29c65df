/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/sitedesk/apiserver/cmd"

func main() {
	cmd.Execute()
}
