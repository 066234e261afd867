// Command sgptd runs the shell automation agent: a local interactive
// shell and a remote HTTP API sharing one process, one working directory,
// and one set of child/PTY sessions.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/ianremillard/sgptd/internal/api"
	"github.com/ianremillard/sgptd/internal/child"
	"github.com/ianremillard/sgptd/internal/config"
	"github.com/ianremillard/sgptd/internal/confirm"
	"github.com/ianremillard/sgptd/internal/ptysession"
	"github.com/ianremillard/sgptd/internal/shell"
)

func main() {
	noConfirm := flag.Bool("no-confirm", false, "disable confirmation prompts before command execution")
	noQuiet := flag.Bool("no-quiet", false, "log every HTTP request (by default transport logging is suppressed)")
	listenAddr := flag.String("listen", "", "override the HTTP listen address (default :11000)")
	configPath := flag.String("config", config.DefaultPath(), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.LoadFile(config.Default(), *configPath)
	if err != nil {
		log.Fatalf("sgptd: loading config %s: %v", *configPath, err)
	}
	if *noConfirm {
		cfg.RequireConfirmation = false
	}
	if *noQuiet {
		cfg.QuietTransport = false
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}

	children := child.NewManager(cfg.Shell)
	sessions := ptysession.NewRegistry(cfg.AutoAttach)
	broker := confirm.NewBroker()
	sh := shell.New(children, sessions, broker)

	srv := api.NewServer(children, sessions, broker, sh, cfg.RootPath, cfg.RequireConfirmation, cfg.QuietTransport)

	// A transport failure (e.g. the port is already in use) is logged and
	// does not crash the local shell: the human can keep working even if
	// the remote API never comes up.
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Printf("sgptd: listen on %s: %v (remote API disabled)", cfg.ListenAddr, err)
	} else {
		go func() {
			if err := srv.Serve(ln); err != nil && err.Error() != "http: Server closed" {
				log.Printf("sgptd: http server stopped: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sig
		fmt.Println("\nsgptd: shutting down")
		cancel()
		srv.Close()
		os.Exit(0)
	}()

	sh.Run(ctx)
}
