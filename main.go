package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"song-recognition/cmd"
	"song-recognition/config"
	"song-recognition/db"
)

func main() {
	if err := os.MkdirAll(config.TmpDir, 0o755); err != nil {
		log.Fatalf("failed to create tmp dir: %v", err)
	}
	if err := os.MkdirAll(config.SongsDir, 0o755); err != nil {
		log.Fatalf("failed to create songs dir: %v", err)
	}

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	_ = godotenv.Load()
	cfg := config.Load()

	store, err := db.Open(cfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	switch os.Args[1] {
	case "find":
		if len(os.Args) < 3 {
			fmt.Println("usage: song-recognition find <path_to_audio_file>")
			os.Exit(1)
		}
		cmd.Find(cfg, store, os.Args[2])

	case "save":
		saveCmd := flag.NewFlagSet("save", flag.ExitOnError)
		force := saveCmd.Bool("force", false, "index file even without complete metadata")
		saveCmd.BoolVar(force, "f", false, "shorthand for -force")
		saveCmd.Parse(os.Args[2:])
		if saveCmd.NArg() < 1 {
			fmt.Println("usage: song-recognition save [-f|--force] <path_to_file_or_dir>")
			os.Exit(1)
		}
		cmd.Save(cfg, store, saveCmd.Arg(0), *force)

	case "download":
		if len(os.Args) < 3 {
			fmt.Println("usage: song-recognition download <spotify_url>")
			os.Exit(1)
		}
		cmd.Download(cfg, store, os.Args[2])

	case "erase":
		all := false
		if len(os.Args) > 2 {
			switch os.Args[2] {
			case "db":
				all = false
			case "all":
				all = true
			default:
				fmt.Println("usage: song-recognition erase [db | all]")
				os.Exit(1)
			}
		}
		cmd.Erase(cfg, store, all)

	case "serve":
		serveCmd := flag.NewFlagSet("serve", flag.ExitOnError)
		protocol := serveCmd.String("proto", cfg.DefaultProto, "protocol to use (http or https)")
		port := serveCmd.String("port", cfg.DefaultPort, "port to listen on")
		serveCmd.Parse(os.Args[2:])
		cmd.Serve(cfg, store, *protocol, *port)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: song-recognition <command>")
	fmt.Println()
	fmt.Println("commands:")
	fmt.Println("  find     <audio_file>                match a file against the database")
	fmt.Println("  save     [-f] <file_or_dir>          index audio file(s) into the database")
	fmt.Println("  download <spotify_url>                 resolve, fetch, convert, and index a track")
	fmt.Println("  erase    [db | all]                   clear database (and optionally audio files)")
	fmt.Println("  serve    [-proto http] [-port 5000]  start the HTTP API")
}
