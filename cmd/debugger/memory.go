package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/eiannone/keyboard"
)

// debugger polls a running andycoin process (started with pprof: true) and keeps its heap
// profiles on disk so leaks can be compared over time.
func main() {
	go quitter()
	if len(os.Args[1:]) < 1 {
		help()
		return
	}
	dirname := filepath.Join("debug", "mem", fmt.Sprintf("%d", time.Now().Unix()))
	switch os.Args[1] {
	case "mem":
		for logIt(dirname) {
			<-time.After(time.Second * 30)
		}
	default:
		help()
	}
}

func quitter() {
	for {
		r, _, err := keyboard.GetSingleKey()
		if err != nil {
			return
		}
		if string(r) == "q" {
			os.Exit(1)
		}
	}
}

func help() {
	fmt.Println()
	fmt.Println("ANDYCOIN DEBUGGER TOOL USAGE")
	fmt.Println()
	fmt.Println("This tool logs go profiling data from a running andycoin process.")
	fmt.Println("Set pprof: true in ~/andycoin/config.yaml first.")
	fmt.Println()
	fmt.Println("debugger <profile type> <api address (optional)> //types: mem")
	fmt.Println()
}

func logIt(dirname string) bool {
	loc := "127.0.0.1:1031"
	if len(os.Args[1:]) == 2 {
		loc = os.Args[2]
	}
	response, err := http.Get("http://" + loc + "/debug/pprof/heap")
	if err != nil {
		fmt.Println(err)
		return false
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		fmt.Printf("%s answered %s, is pprof enabled?\n", loc, response.Status)
		return false
	}
	buf := bytes.Buffer{}
	if _, err = io.Copy(&buf, response.Body); err != nil {
		fmt.Println(err)
		return false
	}
	if err = os.MkdirAll(dirname, 0755); err != nil {
		fmt.Println(err)
		return false
	}
	name := filepath.Join(dirname, fmt.Sprintf("mem.%d.pprof", time.Now().Unix()))
	if err = os.WriteFile(name, buf.Bytes(), 0644); err != nil {
		fmt.Println(err)
		return false
	}
	fmt.Printf("\nwrote %d bytes to %s\n", buf.Len(), name)
	return true
}
