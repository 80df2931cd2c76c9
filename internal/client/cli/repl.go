package cli

import (
	"bufio"
	"context"
	"fmt"
)

// printlnFn and printFn are test seams for user-facing output.
var (
	printlnFn = fmt.Println
	printFn   = fmt.Print
)

// execIface is the command surface the REPL dispatches to. The real App
// satisfies it; tests provide a lightweight stub.
type execIface interface {
	Help()
	Login(ctx context.Context, args []string) error
	Whoami(ctx context.Context) error
	Logout(ctx context.Context) error
	Create(ctx context.Context) error
	Join(ctx context.Context, args []string) error
	Files(ctx context.Context) error
	Refresh(ctx context.Context) error
	Upload(ctx context.Context, args []string) error
	Download(ctx context.Context, args []string) error
	Status(ctx context.Context) error
	Leave(ctx context.Context) error
}

// runREPL reads commands line by line and dispatches them to a until EOF,
// "exit"/"quit", or ctx is done. Command errors are printed as the message
// the user should see and never stop the loop.
//
//	help                 show available commands
//	login <username>     act as username from now on
//	whoami               show the current identity
//	logout               forget the identity and leave the session
//	create               start a new session and print its passkey
//	join <PASSKEY>       join an existing session
//	files | ls           show the cached file list
//	refresh              re-fetch the file list from the server
//	upload <path>        upload a file to the session
//	download <fileId>    save a file into the download directory
//	status               show identity, session and connection state
//	leave                leave the session
//	exit | quit          leave the program
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	interactive := stdinIsTerminal()
	for {
		if ctx.Err() != nil {
			return
		}
		if interactive {
			printFn(fmt.Sprintf("passshare %s> ", statusFn()))
		}
		if !scanner.Scan() {
			return
		}
		cmd, args := splitCommand(scanner.Text())
		if cmd == "" {
			continue
		}

		var err error
		switch cmd {
		case "help":
			a.Help()
		case "login":
			err = a.Login(ctx, args)
		case "whoami":
			err = a.Whoami(ctx)
		case "logout":
			err = a.Logout(ctx)
		case "create":
			err = a.Create(ctx)
		case "join":
			err = a.Join(ctx, args)
		case "files", "ls":
			err = a.Files(ctx)
		case "refresh":
			err = a.Refresh(ctx)
		case "upload":
			err = a.Upload(ctx, args)
		case "download":
			err = a.Download(ctx, args)
		case "status":
			err = a.Status(ctx)
		case "leave":
			err = a.Leave(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", userMessage(err))
		}
	}
}
