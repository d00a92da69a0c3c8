//go:build wasip1

// Command guest is a minimal client bundle for the guest runtime tests.
// It speaks the frame protocol directly with the standard library so it
// builds for wasip1 without the rest of the module.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

type call struct {
	Function string `json:"bioFunction"`
	Service  string `json:"service,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

type frame struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Call   *call  `json:"call,omitempty"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

func send(f frame) {
	data, _ := json.Marshal(f)
	fmt.Fprintf(os.Stderr, "\x00BIO:%s\x00", data)
}

func main() {
	fmt.Fprint(os.Stderr, "\x00BIO_READY\x00")
	send(frame{Type: "notify", Call: &call{Function: "splmHost_WebSideStartHandShake"}})

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 4<<20)
	echoed := false
	for scanner.Scan() {
		var f frame
		if err := json.Unmarshal(scanner.Bytes(), &f); err != nil {
			continue
		}
		switch {
		case f.Type == "request" && f.Call != nil && f.Call.Function == "splmInterop_Ping":
			send(frame{ID: f.ID, Type: "response", Result: "4.0.0"})
		case f.Type == "request" && f.Call != nil && f.Call.Function == "splmInterop_HostServiceListUpdate":
			send(frame{ID: f.ID, Type: "response", Result: "OK"})
			if !echoed {
				echoed = true
				send(frame{ID: "echo", Type: "request", Call: &call{
					Function: "splmHostMethod",
					Service:  `{"FQN":"test.Echo","SvcVersion":"_2019_05"}`,
					Payload:  "hi",
				}})
			}
		case f.Type == "response" && f.ID == "echo":
			fmt.Println(f.Result)
		}
	}
}
