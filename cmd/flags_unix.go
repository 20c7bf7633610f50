//go:build !windows
// +build !windows

package main

import (
	"github.com/lambertxiao/go-tweetfs/pkg/config"
	"github.com/lambertxiao/go-tweetfs/pkg/types"
	"github.com/urfave/cli"
)

func FillConfig(c *cli.Context, conf *config.FSConfig) {
	conf.Attr_ttl = c.Duration(C_ATTRTIMEOUT)
}

func AppendAppFlags(app *cli.App) {
	app.Flags = append(app.Flags, []cli.Flag{
		cli.DurationFlag{
			Name:  C_ATTRTIMEOUT,
			Value: types.DEFAULT_ATTR_TTL,
			Usage: "How long to cache inode attr for fuse",
		},
		cli.StringSliceFlag{
			Name:  C_O,
			Usage: "Specify fuse option",
		},
	}...)
}

func FillPlatformFlags(allFlags map[string]string) {
	for _, v := range []string{
		C_ATTRTIMEOUT,
		C_O} {
		allFlags[v] = "fuse"
	}
}

func PlatformAppHelpTemplate() string {
	return `
FUSE
	{{range cate .Flags "fuse"}}{{.}}
	{{end}}
`
}
