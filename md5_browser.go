package main

import (
	"flag"
	"log"
	"strings"

	"github.com/mogaika/md5_browser/config"
	"github.com/mogaika/md5_browser/vfs"
	"github.com/mogaika/md5_browser/web"

	_ "github.com/mogaika/md5_browser/pack/md5/anim"
	_ "github.com/mogaika/md5_browser/pack/md5/mesh"
)

func main() {
	var configPath, addr, dir, webPath, encoding string
	var trace bool
	flag.StringVar(&configPath, "config", config.DefaultFileName, "Path to yaml config")
	flag.StringVar(&addr, "i", "", "Address of server")
	flag.StringVar(&dir, "dir", "", "Path to folder with md5mesh and md5anim files")
	flag.StringVar(&webPath, "web", "", "Path to web resources")
	flag.StringVar(&encoding, "encoding", "", "Source text encoding, one of: "+strings.Join(config.ListEncodings(), ", "))
	flag.BoolVar(&trace, "trace", false, "Print parser trace")
	flag.Parse()

	c, err := config.Load(configPath)
	if err != nil {
		log.Fatal(err)
	}

	// flags override config file values
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "i":
			c.Addr = addr
		case "dir":
			c.DataDir = dir
		case "web":
			c.WebPath = webPath
		case "encoding":
			c.Encoding = encoding
		case "trace":
			c.TraceParse = trace
		}
	})

	if err := c.Apply(); err != nil {
		log.Fatal(err)
	}

	if err := web.StartServer(c.Addr, vfs.NewDirectoryDriver(c.DataDir), c.WebPath); err != nil {
		log.Fatal(err)
	}
}
