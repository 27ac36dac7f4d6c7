package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"

	easy "git.fiblab.net/utils/logrus-easy-formatter"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/lanelet"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/entity/roadnetwork"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-roadnet/utils/input"
	"gopkg.in/yaml.v2"
)

var (
	// 配置文件路径
	configPath = flag.String("config", "", "config file path")
	// 配置文件Base64编码后的数据
	configData = flag.String("config-data", "", "config file base64 encoded data")

	// log
	logLevels = map[string]logrus.Level{
		"trace":    logrus.TraceLevel,
		"debug":    logrus.DebugLevel,
		"info":     logrus.InfoLevel,
		"warn":     logrus.WarnLevel,
		"error":    logrus.ErrorLevel,
		"critical": logrus.FatalLevel,
		"off":      logrus.PanicLevel,
	}
	logLevel = flag.String("log.level", "info", "日志级别（可选项：trace debug info warn error critical off）")

	log = logrus.WithField("module", "roadnet")
)

func main() {
	flag.Parse()
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	if level, ok := logLevels[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		log.Panicf("log.level must be one of %v", lo.Keys(logLevels))
	}
	// 获取配置
	var c config.Config
	var file []byte
	var err error
	if *configPath != "" {
		file, err = os.ReadFile(*configPath)
		if err != nil {
			log.Panicf("config file load err: %v", err)
		}
	} else if *configData != "" {
		file, err = base64.StdEncoding.DecodeString(*configData)
		if err != nil {
			log.Panicf("config data load err: %v", err)
		}
	} else {
		log.Panic("config file or config data must be specified")
	}
	if err := yaml.UnmarshalStrict(file, &c); err != nil {
		log.Panicf("config file load err: %v", err)
	}
	rc := config.NewRuntimeConfig(c)
	log.Infof("%+v", rc.R)

	scenario, err := input.Load(context.Background(), c.Input)
	if err != nil {
		log.Panicf("input load err: %v", err)
	}
	lanelets, intersections, err := scenario.Build()
	if err != nil {
		log.Panicf("input build err: %v", err)
	}
	rn, err := roadnetwork.New(lanelets, intersections, rc.RoadNetworkParameters())
	if err != nil {
		log.Panicf("road network err: %v", err)
	}
	members, err := rn.IntersectionMemberLanelets()
	if err != nil {
		log.Panicf("intersection members err: %v", err)
	}
	lanes, err := rn.BuildClassifiedLanes()
	if err != nil {
		log.Panicf("lane build err: %v", err)
	}
	g := rn.TopologicalMap()
	log.Infof("road network: %d lanelets, %d intersections (%d member lanelets), %d successor edges, %d classified lanes",
		len(rn.Lanelets()), len(rn.Intersections()),
		lo.SumBy(lo.Values(members), func(ls []*lanelet.Lanelet) int { return len(ls) }),
		lo.SumBy(rn.Lanelets(), func(l *lanelet.Lanelet) int { return len(g.Successors(l.ID())) }), len(lanes))
}
