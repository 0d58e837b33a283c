package main

import (
	"fmt"
	"os"
	"path/filepath"

	"mol"

	flags "github.com/jessevdk/go-flags"
	"github.com/magiconair/properties"
)

var opts struct {
	Config string `short:"c" long:"config" description:"properties file with compiler settings"`
	Args   struct {
		Source string `positional-arg-name:"source"`
	} `positional-args:"yes" required:"yes"`
}

func main() {
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}
	source := opts.Args.Source
	if filepath.Ext(source) != ".mol" {
		fmt.Fprintln(os.Stderr, "a source file with an extension .mol is expected")
		os.Exit(1)
	}
	cfg := properties.NewProperties()
	if opts.Config != "" {
		loaded, err := properties.LoadFile(opts.Config, properties.UTF8)
		check(err)
		cfg = loaded
	}
	bytes, err := os.ReadFile(source)
	check(err)
	source = filepath.Base(source)
	program, err := mol.ParseCompilationUnit(source, bytes)
	check(err)
	checked, err := mol.CheckCompilationUnit(program)
	check(err)
	module := mol.CodegenCompilationUnit(checked, cfg.GetString("module.name", source))
	if out := cfg.GetString("output", ""); out != "" {
		check(os.WriteFile(out, []byte(module.String()), 0644))
		return
	}
	fmt.Println(module.String())
}

func check(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
