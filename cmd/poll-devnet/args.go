package main

import (
	"flag"
	"fmt"
	"os"
)

type args struct {
	dataDir      string
	dbUrl        string
	dbName       string
	participants int
	capacity     int
	reward       uint64
	nuke         bool
}

func ParseArgs() (args, error) {
	flag.Usage = func() {
		fmt.Printf("Seed a devnet database with a funded poll and settled answers.\n\n")
		fmt.Printf("Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	dataDir := flag.String("data-dir", "data", "Directory holding the config files")
	dbUrl := flag.String("db-url", "", "MongoDB URI, defaults to the config value")
	dbName := flag.String("db-name", "reward-polls-devnet", "Database name")
	participants := flag.Int("participants", 3, "Participants answering the poll")
	capacity := flag.Int("capacity", 2, "Participants the poll pays for")
	reward := flag.Uint64("reward", 10, "Reward per participant")
	nuke := flag.Bool("nuke", false, "Empty the database first")

	flag.Parse()

	if *participants < 1 {
		return args{}, fmt.Errorf("participants must be at least 1")
	}
	if *capacity < 1 {
		return args{}, fmt.Errorf("capacity must be at least 1")
	}
	if *reward == 0 {
		return args{}, fmt.Errorf("reward must be positive")
	}

	return args{
		*dataDir,
		*dbUrl,
		*dbName,
		*participants,
		*capacity,
		*reward,
		*nuke,
	}, nil
}
