// Command gameclient connects to a gameserver, sends one admission request
// built from an inventory file, and on acceptance relays stdin/stdout as
// the chat phase.
//
// Usage: gameclient -n <name> -i <inventory_file> <hostname>
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"

	"gameserver/internal/config"
	"gameserver/internal/invfile"
	"gameserver/internal/wire"
)

// Port is the fixed game port gameserver listens on.
const Port = "5623"

func main() {
	settings, err := config.ParseClientArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid parameters. Exiting ...")
		os.Exit(1)
	}

	inv, err := invfile.Load(settings.Inventory)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load inventory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n\t Settings for this player: \n\n")
	fmt.Printf("\t Name: %s \n", settings.Name)
	fmt.Printf("\t Inventory selection: %s \n", settings.Inventory)
	fmt.Printf("\t Host name: %s \n\n", settings.Host)

	conn, err := net.Dial("tcp", net.JoinHostPort(settings.Host, Port))
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	req := wire.AdmissionRequest{PlayerName: settings.Name, Inventory: inv}
	frame, err := wire.SerializeRequest(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build request: %v\n", err)
		os.Exit(1)
	}
	if _, err := conn.Write(frame); err != nil {
		fmt.Fprintf(os.Stderr, "send request: %v\n", err)
		os.Exit(1)
	}

	reply, err := wire.ReadReply(conn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read reply: %v\n", err)
		os.Exit(1)
	}
	if reply != wire.ReplyOK {
		fmt.Fprintln(os.Stderr, "Encountered a problem")
		os.Exit(1)
	}
	fmt.Println("Admitted. Waiting for the room to fill ...")

	runChat(conn)
}

// runChat reads 1024-byte frames from the server on one goroutine while
// relaying stdin lines to it on the calling goroutine, until either side
// closes the connection.
func runChat(conn net.Conn) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			line, err := wire.ReadChatLine(conn)
			if err != nil {
				if err != io.EOF {
					fmt.Fprintf(os.Stderr, "\nconnection closed: %v\n", err)
				}
				return
			}
			switch line {
			case wire.WaitingText:
				fmt.Print(line)
			case wire.StartText:
				fmt.Println("The game has started.")
			default:
				if line != "" {
					fmt.Println(line)
				}
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			return
		default:
		}
		frame := make([]byte, wire.RequestFrameLen)
		copy(frame, scanner.Text())
		if _, err := conn.Write(frame); err != nil {
			fmt.Fprintf(os.Stderr, "send: %v\n", err)
			return
		}
	}
	<-done
}
