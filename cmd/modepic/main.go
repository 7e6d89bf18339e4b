package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/theckman/yacspin"

	"github.com/OE-FET/goxepr/lsq"
	"github.com/OE-FET/goxepr/modepicture"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"
)

func root() {
	str := `modepic analyzes saved ESR cavity mode pictures.

Usage:
	modepic <command> [args]

Commands:
	fit <file>    fit a saved mode picture and print its Q-value
	watch <dir>   watch a folder for new mode pictures and fit each one
	help
	version`
	fmt.Println(str)
}

func help() {
	str := `modepic fit loads a mode picture text file, re-runs the background +
Lorentzian dip fit, and prints the cavity Q-value with its standard
error.

modepic watch polls a folder for new .txt files.  Files that are still
being written by the spectrometer fail to parse at first, so each new
file is retried with an exponential backoff before giving up.`
	fmt.Println(str)
}

func pversion() {
	fmt.Printf("modepic version %v\n", Version)
}

func spinner(message string) (*yacspin.Spinner, error) {
	cfg := yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " " + message,
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	}
	return yacspin.New(cfg)
}

func printResult(mp *modepicture.ModePicture) {
	fmt.Printf("Q = %.1f ± %.1f  (f0 = %.4f GHz, %d samples)\n", mp.QValue, mp.QValueStderr, mp.Freq0, mp.Len())
	for _, key := range mp.Metadata.Keys() {
		v, _ := mp.Metadata.Get(key)
		fmt.Printf("  %s: %s\n", key, v)
	}
}

func fit(path string) {
	spin, err := spinner("fitting mode picture")
	if err != nil {
		log.Fatal(err)
	}
	spin.Start()
	mp, err := modepicture.FromFile(path)
	if err != nil {
		spin.StopFail()
		log.Fatal(err)
	}
	spin.Stop()
	printResult(mp)
}

// loadWithRetry loads a mode picture, retrying parse failures with an
// exponential backoff so files still being written get a second chance.
// Convergence failures are not retried; the data will not change.
func loadWithRetry(path string) (*modepicture.ModePicture, error) {
	var mp *modepicture.ModePicture
	op := func() error {
		m, err := modepicture.FromFile(path)
		if err != nil {
			if errors.Is(err, lsq.ErrNoConvergence) {
				return backoff.Permanent(err)
			}
			return err
		}
		mp = m
		return nil
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = 10 * time.Second
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return mp, nil
}

func watch(dir string) {
	seen := map[string]bool{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatal(err)
	}
	for _, e := range entries {
		seen[e.Name()] = true
	}
	log.Println("watching", dir, "for new mode pictures")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		entries, err := os.ReadDir(dir)
		if err != nil {
			log.Println("error reading folder:", err)
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if seen[name] || e.IsDir() || !strings.HasSuffix(name, ".txt") {
				continue
			}
			seen[name] = true
			path := filepath.Join(dir, name)
			mp, err := loadWithRetry(path)
			if err != nil {
				log.Printf("error fitting %s: %v", name, err)
				continue
			}
			log.Printf("%s: Q = %.1f ± %.1f (f0 = %.4f GHz)", name, mp.QValue, mp.QValueStderr, mp.Freq0)
		}
	}
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	switch strings.ToLower(args[1]) {
	case "help":
		help()
	case "version":
		pversion()
	case "fit":
		if len(args) < 3 {
			log.Fatal("fit requires a file path")
		}
		fit(args[2])
	case "watch":
		if len(args) < 3 {
			log.Fatal("watch requires a folder path")
		}
		watch(args[2])
	default:
		log.Fatal("unknown command")
	}
}
