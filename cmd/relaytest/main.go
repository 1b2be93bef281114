// Exercises every relay of a board through a basic functional walkthrough:
// all on, one by one, then in pairs. Runs against real hardware by default,
// or against the in-memory fake with -fake.
package main

import (
	"flag"
	"log"
	"time"

	"github.com/hubertat/relaykit"
	"github.com/hubertat/relaykit/serial"
	"github.com/hubertat/relaykit/usbio"
)

var (
	device   = flag.String("device", "/dev/ttyUSB0", "serial device of the io module")
	portName = flag.String("port", "A", "io module port wired to the relay board")
	fake     = flag.Bool("fake", false, "run against an in-memory fake board")
)

var allRelays = []int{1, 2, 3, 4, 5, 6, 7, 8}

func main() {
	flag.Parse()

	port, err := usbio.ParsePort(*portName)
	if err != nil {
		log.Fatal(err)
	}

	var transport usbio.Transport
	if *fake {
		transport = &usbio.MockTransport{}
	} else {
		serialPort, err := serial.Open(serial.Config{Device: *device})
		if err != nil {
			log.Fatal(err)
		}
		defer serialPort.Close()
		transport = serialPort
	}

	io24, err := usbio.New(transport)
	if err != nil {
		log.Fatal(err)
	}

	identity, err := io24.Identify()
	if err != nil {
		log.Fatal(err)
	}

	board, err := relaykit.NewRelayBoard(io24, port)
	if err != nil {
		log.Fatal(err)
	}
	must(board.Reset())

	log.Printf("--- testing relays for %s, port %s ---", identity, port)

	log.Println("turning all relays on for three seconds")
	must(board.SetState(allRelays...))
	time.Sleep(3 * time.Second)
	must(board.Reset())

	log.Println("activating relays in sequence")
	for times := 0; times < 3; times++ {
		for _, relay := range allRelays {
			must(board.Activate(relay))
			time.Sleep(250 * time.Millisecond)
		}

		for _, relay := range allRelays {
			must(board.Deactivate(relay))
			time.Sleep(250 * time.Millisecond)
		}
	}

	log.Println("switching relay pairs")
	pairs := [][]int{{1, 8}, {2, 7}, {3, 6}, {4, 5}}
	for _, pair := range pairs {
		must(board.SetState(pair...))
		time.Sleep(250 * time.Millisecond)
	}
	must(board.Reset())

	log.Println("done")
}

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
