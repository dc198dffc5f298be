package main

import (
	"flag"
	"log/slog"
	"time"

	"github.com/mbocsi/edgehub/client"
	"github.com/mbocsi/edgehub/gateway"
	"github.com/mbocsi/edgehub/proto"
)

// Demo device: attaches the cloud-to-device and method links, then sends
// telemetry every few seconds.
func main() {
	addr := flag.String("addr", "localhost:8888", "gateway TCP address")
	deviceID := flag.String("device", "demo-device", "device id")
	flag.Parse()

	slog.Info("Starting demo device", "device", *deviceID)

	device := client.NewDevice(*deviceID, "", client.NewTCPTransport())

	device.OnMessage(string(gateway.RoleCloudToDevice), func(msg *proto.Message) {
		slog.Info("Cloud-to-device message",
			"to", msg.SystemProperty(proto.SysPropTo),
			"body", string(msg.Body),
		)
	})
	device.OnMessage(string(gateway.RoleMethodSending), func(msg *proto.Message) {
		slog.Info("Method invocation",
			"method", msg.AppProperty(proto.AppPropMethodName),
			"correlation", msg.SystemProperty(proto.SysPropCorrelationID),
		)
	})

	if err := device.Connect(*addr); err != nil {
		panic(err)
	}
	defer device.Close()

	if err := device.Attach(string(gateway.RoleCloudToDevice), ""); err != nil {
		panic(err)
	}
	correlation := *deviceID + "-methods"
	if err := device.Attach(string(gateway.RoleMethodSending), correlation); err != nil {
		panic(err)
	}
	if err := device.Attach(string(gateway.RoleMethodReceiving), correlation); err != nil {
		panic(err)
	}

	ticker := time.NewTicker(5 * time.Second)
	for temp := 20.0; ; temp += 0.1 {
		<-ticker.C
		if err := device.SendTelemetry(map[string]any{"temperature": temp}); err != nil {
			slog.Error("Failed to send telemetry", "error", err.Error())
			return
		}
	}
}
