// Command picobridge-console is an operator REPL that attaches to a
// running picobridge process over its admin Unix socket, generalized
// from the teacher's CLI/"direct" channel (ProcessDirect in
// pkg/agent/loop.go) into an out-of-process attach tool.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
)

func main() {
	socketPath := flag.String("socket", "/data/picobridge-admin.sock", "path to the picobridge admin socket")
	flag.Parse()

	conn, err := net.DialTimeout("unix", *socketPath, 5*time.Second)
	if err != nil {
		fmt.Fprintf(os.Stderr, "picobridge-console: could not connect to %s: %v\n", *socketPath, err)
		os.Exit(1)
	}
	defer conn.Close()

	rl, err := readline.New("picobridge> ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "picobridge-console: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	reader := bufio.NewReader(conn)

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
			break
		}
		reply, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "connection closed: %v\n", err)
			break
		}
		fmt.Println(strings.TrimSuffix(reply, "\n"))
	}
}
