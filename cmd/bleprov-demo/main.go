// bleprov-demo provisions a simulated unprovisioned device in-process,
// driving a Client and Server through a full Mesh Provisioning exchange
// over a virtual PB-ADV advertising medium.
//
// Usage:
//
//	bleprov-demo [options]
//
// Options:
//
//	-auth      Authentication method: none, static, output (default: none)
//	-netkey    NetKeyIndex delivered to the device (default: 1)
//	-address   Primary unicast address delivered to the device (default: 5)
//	-staticoob Hex-encoded 16-byte static OOB value (default: a fixed demo value)
//	-timeout   How long to wait for the exchange to finish (default: 10s)
//	-verbose   Enable debug logging
//
// Example:
//
//	bleprov-demo -auth static -netkey 3 -address 10
package main

import (
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/kbell/bleprov/examples/common"
	"github.com/kbell/bleprov/pkg/bearer"
	"github.com/kbell/bleprov/pkg/pdu"
	"github.com/kbell/bleprov/pkg/provisioning"
	"github.com/pion/logging"
)

var defaultStaticOOB = [16]byte{0xaa, 0xbb, 0xcc, 0xdd, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0x00, 0xde, 0xad}

func main() {
	opts := common.ParseFlags()

	if err := run(opts); err != nil {
		log.Fatalf("provisioning demo failed: %v", err)
	}
}

func run(opts common.Options) error {
	loggerFactory := logging.NewDefaultLoggerFactory()
	if opts.Verbose {
		loggerFactory.DefaultLogLevel = logging.LogLevelDebug
	} else {
		loggerFactory.DefaultLogLevel = logging.LogLevelWarn
	}

	staticOOB := defaultStaticOOB
	if opts.StaticOOB != "" {
		raw, err := hex.DecodeString(opts.StaticOOB)
		if err != nil || len(raw) != 16 {
			return fmt.Errorf("-staticoob must be 32 hex characters (16 bytes)")
		}
		copy(staticOOB[:], raw)
	}

	deviceUUID := [16]byte{0x70, 0x72, 0x6f, 0x76, 0x69, 0x73, 0x69, 0x6f, 0x6e, 0x69, 0x6e, 0x67, 0x2d, 0x64, 0x65, 0x6d}

	caps := pdu.CapabilitiesPDU{NumElements: 1, Algorithms: 1}
	var deviceStaticOOB *[16]byte
	switch opts.Auth {
	case "static":
		caps.StaticOOBType = 1
		deviceStaticOOB = &staticOOB
	case "output":
		caps.OutputOOBSize = 4
		caps.OutputOOBAction = 1 // Blink
	}

	medium := bearer.NewVirtualAdvertisingMedium()
	beaconMedium := bearer.NewVirtualAdvertisingMedium()

	serverBearer := bearer.NewManager(bearer.Config{LoggerFactory: loggerFactory, Medium: medium, BeaconMedium: beaconMedium})
	clientBearer := bearer.NewManager(bearer.Config{LoggerFactory: loggerFactory, Medium: medium, BeaconMedium: beaconMedium})

	done := make(chan error, 2)
	clientEv := make(chan provisioning.ClientEvent, 16)
	serverEv := make(chan provisioning.ServerEvent, 16)

	server, err := provisioning.NewServer(provisioning.ServerConfig{
		LoggerFactory: loggerFactory,
		Bearer:        serverBearer,
		Device: provisioning.DeviceInfo{
			UUID:         deviceUUID,
			Capabilities: caps,
			BeaconPeriod: 200 * time.Millisecond,
			StaticOOB:    deviceStaticOOB,
		},
		OnEvent: func(ev provisioning.ServerEvent) { serverEv <- ev },
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	client, err := provisioning.NewClient(provisioning.ClientConfig{
		LoggerFactory: loggerFactory,
		Bearer:        clientBearer,
		OnEvent:       func(ev provisioning.ClientEvent) { clientEv <- ev },
	})
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if err := server.EnterPBADV(1); err != nil {
		return fmt.Errorf("server EnterPBADV: %w", err)
	}
	if err := client.StartPBADV(2, provisioning.SessionInfo{
		DeviceUUID: deviceUUID,
		StaticOOB:  deviceStaticOOB,
		Data: pdu.ProvisioningData{
			NetKey:         [16]byte{0x01, 0x02, 0x03, 0x04},
			NetKeyIndex:    opts.NetKeyIndex,
			PrimaryAddress: opts.Address,
		},
	}); err != nil {
		return fmt.Errorf("client StartPBADV: %w", err)
	}

	oobRelay := make(chan []byte, 1)
	go driveServer(server, serverEv, done, oobRelay)
	go driveClient(client, clientEv, opts.Auth, done, oobRelay)

	timeout := time.After(opts.Timeout)
	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			if err != nil {
				return err
			}
		case <-timeout:
			return fmt.Errorf("timed out after %s waiting for provisioning to finish", opts.Timeout)
		}
	}

	return nil
}

// driveServer answers the device-side prompts a real application would
// show the installer: for output OOB, displaying the authentication
// value.
func driveServer(server *provisioning.Server, events chan provisioning.ServerEvent, done chan<- error, oobRelay chan<- []byte) {
	for ev := range events {
		switch ev.Kind {
		case provisioning.ServerEventOutputOob:
			fmt.Printf("[device] displaying output OOB value: %s\n", ev.OutputOobData)
			oobRelay <- ev.OutputOobData
		case provisioning.ServerEventProvisioningComplete:
			fmt.Println("[device] provisioning complete")
			fmt.Printf("  Address:     0x%04x\n", ev.Address)
			fmt.Printf("  NetKeyIndex: 0x%04x\n", ev.NetKeyIndex)
			fmt.Printf("  DeviceKey:   %x\n", ev.DeviceKey)
			done <- nil
			return
		case provisioning.ServerEventProvisioningFailed:
			done <- fmt.Errorf("device: provisioning failed: %v", ev.FailReason)
			return
		}
	}
}

// driveClient answers the installer-side prompts: choosing an
// authentication method based on the advertised Capabilities and, for
// output OOB, relaying the value read off the device back to the Client.
func driveClient(client *provisioning.Client, events chan provisioning.ClientEvent, auth string, done chan<- error, oobRelay <-chan []byte) {
	for ev := range events {
		switch ev.Kind {
		case provisioning.ClientEventRecvCapabilities:
			fmt.Printf("[app] device capabilities: %+v\n", ev.Capabilities)
			sel := provisioning.AuthSelection{Algorithm: pdu.AlgorithmFIPSP256, PublicKey: pdu.PublicKeyNoOOB}
			switch auth {
			case "static":
				sel.AuthMethod = pdu.AuthMethodStaticOOB
			case "output":
				sel.AuthMethod = pdu.AuthMethodOutputOOB
				sel.AuthAction = 1
				sel.AuthSize = 4
			default:
				sel.AuthMethod = pdu.AuthMethodNoOOB
			}
			if err := client.SelectAuthentication(sel); err != nil {
				done <- fmt.Errorf("app: SelectAuthentication: %w", err)
				return
			}
		case provisioning.ClientEventEnterOutputOob:
			// A real app prompts the installer to type in the value
			// read off the device's display; the demo relays it
			// directly from driveServer instead of a human in the loop.
			value := <-oobRelay
			fmt.Printf("[app] entering value shown on device: %s\n", value)
			if err := client.EnterOutputOOB(uint8(len(value)), value); err != nil {
				done <- fmt.Errorf("app: EnterOutputOOB: %w", err)
				return
			}
		case provisioning.ClientEventProvisioningComplete:
			fmt.Println("[app] provisioning complete")
			fmt.Printf("  DeviceUUID:  %x\n", ev.DeviceUUID)
			fmt.Printf("  Address:     0x%04x\n", ev.Address)
			fmt.Printf("  NumElements: %d\n", ev.NumElements)
			done <- nil
			return
		case provisioning.ClientEventProvisioningFailed:
			done <- fmt.Errorf("app: provisioning failed: %v", ev.FailReason)
			return
		}
	}
}
