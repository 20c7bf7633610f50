package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/lambertxiao/go-tweetfs/pkg/config"
	"github.com/lambertxiao/go-tweetfs/pkg/logg"

	"github.com/urfave/cli"

	_ "net/http/pprof"
)

var waitfor_sig os.Signal

func init() {
	os.Setenv("GOTRACEBACK", "crash")

	go func() {
		for {
			time.Sleep(time.Minute * 10)
			runtime.GC()
		}
	}()

	cli.HelpPrinter = func(w io.Writer, templ string, data interface{}) {
		cli.HelpPrinterCustom(w, templ, data, map[string]interface{}{
			"cate": filterCategory,
		})
	}
}

func filterCategory(flags []cli.Flag, category string) []cli.Flag {
	ret := make([]cli.Flag, 0, len(flags))
	for _, f := range flags {
		if allFlags[f.GetName()] == category {
			ret = append(ret, f)
		}
	}
	return ret
}

func appHelpTemplate() string {
	return `NAME:
	{{.Name}} - {{.Usage}}

VERSION:
	{{.Version}}
COMMANDS:
	{{range .VisibleCommands}}{{join .Names ", "}}{{"\t"}}{{.Usage}}
	{{end}}
MISC OPTIONS:
	{{range cate .Flags "misc"}}{{.}}
	{{end}}
OPTIONS:
	{{range cate .Flags "os"}}{{.}}
	{{end}}` + PlatformAppHelpTemplate()
}

func main() {
	app := NewApp()
	app.CustomAppHelpTemplate = appHelpTemplate()

	app.Action = func(c *cli.Context) error {
		if len(c.Args()) < 1 {
			fmt.Fprintf(os.Stderr, "Error: %s need one arg.\n", app.Name)
			cli.ShowAppHelp(c)
			os.Exit(1)
		}

		fsconfig, err := PopulateConfig(c)
		if err != nil {
			fmt.Printf("Parse config error: %v\n", err)
			return err
		}

		config.SetGConfig(fsconfig)
		if err := logg.InitLogHook(fsconfig.LogDir, fsconfig.LogMaxAge, fsconfig.LogRotationTime); err != nil {
			fmt.Printf("Init log error: %v\n", err)
			return err
		}
		logg.InitLogger()

		return mount(fsconfig)
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println("See log for defail reason", err)
		os.Exit(1)
	}
}
