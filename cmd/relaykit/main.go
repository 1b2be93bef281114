package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/hubertat/servicemaker"

	"github.com/hubertat/relaykit"
)

const defaultSyncInterval = "500ms"

var (
	Version string
	Build   string

	config       = flag.String("config", "config.json", "path of the configuration file")
	flagInstall  = flag.Bool("install", false, "Install service in os")
	syncInterval = flag.String("sync", defaultSyncInterval, "sync interval (time.Duration)")

	rkService = servicemaker.ServiceMaker{
		User:               "relaykit",
		UserGroups:         []string{"dialout"},
		ServicePath:        "/etc/systemd/system/relaykit.service",
		ServiceDescription: "relaykit service: HomeKit enabled relay board controller. github.com/hubertat/relaykit",
		ExecDir:            "/srv/relaykit",
		ExecName:           "relaykit",
	}
)

func main() {
	log.Printf("relaykit %s started\n", Version)
	flag.Parse()

	if *flagInstall {
		err := rkService.InstallService()
		if err != nil {
			panic(err)
		} else {
			log.Println("service installed!")
			return
		}
	}

	syncDuration, err := time.ParseDuration(*syncInterval)
	if err != nil {
		panic(err)
	}

	kit := &relaykit.Kit{}
	configFile, err := os.Open(*config)
	if err == nil {
		cBuff, err := io.ReadAll(configFile)
		if err != nil {
			log.Fatalf("failed reading config file: %v\n", err)
		}

		err = json.Unmarshal(cBuff, kit)
		if err != nil {
			log.Fatalf("failed unmarshalling json config: %v", err)
		}
	} else {
		log.Fatalf("can't find/open config file (%s), will terminate. Reason: \n%v\n", *config, err)
	}

	log.Println("will init relaykit device...")
	err = kit.InitDevice()
	defer kit.Close()
	if err != nil {
		panic(err)
	}

	if len(kit.MqttBroker) > 0 {
		log.Println("will connect to mqtt broker...")
		err = kit.InitMqtt()
		if err != nil {
			log.Printf("mqtt init returned error: %v\n we will proceed...", err)
		}
	}

	kit.InitStateLog()

	if len(kit.HttpAddr) > 0 {
		log.Println("starting http api on", kit.HttpAddr)
		err = kit.StartHttpApi()
		if err != nil {
			panic(err)
		}
	}

	kit.PrintStatus(os.Stdout)

	if len(kit.HkPin) == 8 {
		log.Println("Starting with HomeKit server")

		go kit.StartTicker(syncDuration)
		log.Fatal(kit.StartHomeKit(context.Background(), Version))
	} else {
		log.Println("HomeKit not configured, disabled")
		kit.StartTicker(syncDuration)
	}
}
