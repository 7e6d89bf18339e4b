package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	yml "gopkg.in/yaml.v2"

	"github.com/OE-FET/goxepr/generichttp"
	"github.com/OE-FET/goxepr/modepicture"
	"github.com/OE-FET/goxepr/recorder"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "modepicsrv.yml"
	k              = koanf.New(".")
)

// RecordSetup configures the automatic archiving of fit results.
type RecordSetup struct {
	// Root is the folder mode pictures are archived under
	Root string `yaml:"Root" koanf:"Root"`

	// Prefix is the filename prefix for archived mode pictures
	Prefix string `yaml:"Prefix" koanf:"Prefix"`

	// Enabled turns archiving on
	Enabled bool `yaml:"Enabled" koanf:"Enabled"`
}

// Config holds the initialization parameters for the analysis server.
// It is to be populated by a yaml/unmarshal call.
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr" koanf:"Addr"`

	// Stem is the URL prefix the analysis routes are served under
	Stem string `yaml:"Stem" koanf:"Stem"`

	// Record configures automatic archiving of fit results
	Record RecordSetup `yaml:"Record" koanf:"Record"`
}

func setupconfig() {
	k.Load(structs.Provider(Config{
		Addr: ":8000",
		Stem: "/xepr/mode-picture",
		Record: RecordSetup{
			Root:   "mode-pictures",
			Prefix: "mode-pic-",
		}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `modepicsrv exposes ESR cavity mode picture analysis over HTTP.
Clients POST raw multi-zoom scan data or saved mode picture files and
receive the cavity Q-value with its standard error.

Usage:
	modepicsrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `modepicsrv is amenable to configuration via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

Routes, mounted under Stem:
	POST /fit       JSON {"freq_ghz": f, "curves": {"<zoom>": [..]}}
	POST /fit-file  body is a saved mode picture text file
	GET  /qvalue    last computed Q-value

When Record.Enabled is true, every successful fit is archived under
Record.Root in yyyy-mm-dd subfolders, and the /autowrite/* routes allow
the folder and prefix to be changed on the fly.`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("modepicsrv version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}

	analyzer := modepicture.NewHTTPAnalyzer()
	if c.Record.Enabled {
		rec := &recorder.Recorder{
			Root:    c.Record.Root,
			Prefix:  c.Record.Prefix,
			Enabled: true}
		rec.Incr()
		analyzer.Recorder = rec
		recorder.NewHTTPWrapper(rec).Inject(analyzer)
	}

	sub := chi.NewRouter()
	analyzer.RT().Bind(sub)

	mux := chi.NewRouter()
	mux.Use(middleware.Logger)
	stem := generichttp.SubMuxSanitize(c.Stem)
	mux.Mount(stem, sub)

	log.Println("now listening for requests at", c.Addr)
	for _, ep := range analyzer.RT().Endpoints() {
		log.Println(ep, "under", stem)
	}
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	switch strings.ToLower(args[1]) {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
