package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"log"

	humanize "github.com/dustin/go-humanize"
	"github.com/golang/glog"

	"github.com/robotalks/rawlog/pkg/env"
	"github.com/robotalks/rawlog/pkg/framework"
)

func init() {
	env.SetupFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	runner := framework.NewRunner().HandleSignals()
	env := env.NewConfig().MustNewEnv(runner.Context)
	loop := framework.NewLoop().Add(env)
	err := runner.Go(loop).Wait()
	if cerr := env.Close(); cerr != nil {
		glog.Errorf("close: %v", cerr)
	}

	l := env.Logger
	fmt.Printf("%s: %s, committed %s, dropped %s, high-water mark %s of %s\n",
		l.RunID(), l.State(),
		humanize.Bytes(l.Committed()), humanize.Bytes(l.Dropped()),
		humanize.Bytes(uint64(l.HighWaterMark())), humanize.Bytes(uint64(l.Config().Capacity)))
	if stats := l.Stats(); stats.Count() > 0 {
		fmt.Printf("%d blocks, write p50 %v, p99 %v, max %v\n",
			stats.Count(), stats.Quantile(0.5), stats.Quantile(0.99), stats.Max())
	}
	if err != nil {
		log.Fatalln(err)
	}
}
