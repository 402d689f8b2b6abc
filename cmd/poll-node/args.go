package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type fund struct {
	owner  string
	amount uint64
}

type fundList []fund

func (fl *fundList) String() string {
	parts := make([]string, 0, len(*fl))
	for _, f := range *fl {
		parts = append(parts, fmt.Sprintf("%s=%d", f.owner, f.amount))
	}
	return strings.Join(parts, ",")
}

func (fl *fundList) Set(value string) error {
	owner, amount, ok := strings.Cut(value, "=")
	if !ok || owner == "" {
		return fmt.Errorf("expected <principal>=<amount>, got %q", value)
	}
	n, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	*fl = append(*fl, fund{owner, n})
	return nil
}

type args struct {
	dataDir  string
	dbSuffix string
	funds    fundList
}

func ParseArgs() (args, error) {
	flag.Usage = func() {
		fmt.Printf("Poll node - funded polls with on-ledger reward settlement.\n\n")
		fmt.Printf("Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	dataDir := flag.String("data-dir", "data", "Directory holding the config files")
	dbSuffix := flag.String("db-suffix", "", "Optional database name suffix")
	var funds fundList
	flag.Var(&funds, "fund", "Credit <principal>=<amount> on the ledger and exit (repeatable)")

	flag.Parse()

	return args{
		*dataDir,
		*dbSuffix,
		funds,
	}, nil
}
