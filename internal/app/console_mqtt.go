package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/relabs-tech/adxl345_driver/internal/config"
)

// RunConsoleMQTT prints every published batch and pose until ctx ends.
func RunConsoleMQTT(ctx context.Context) error {
	cfg := config.Get()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeJSON(client, cfg.TopicSamples+"/+", "console", func(b SampleBatch) {
		printBatch(os.Stdout, b)
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, cfg.TopicPose+"/+", "console", func(p PoseMessage) {
		printPose(os.Stdout, p)
	}); err != nil {
		return err
	}

	<-ctx.Done()
	log.Println("console: shutting down")
	return nil
}

func printBatch(w io.Writer, b SampleBatch) {
	if b.Mode == "axis" {
		vals := make([]string, len(b.Readings))
		for i, r := range b.Readings {
			vals[i] = fmt.Sprintf("%d", r)
		}
		fmt.Fprintf(w, "[%s] %s=%s\n", b.Device, strings.ToUpper(b.Axis), strings.Join(vals, " "))
		return
	}
	for _, s := range b.Samples {
		fmt.Fprintf(w, "[%s] x=%6d y=%6d z=%6d\n", b.Device, s.X, s.Y, s.Z)
	}
}

func printPose(w io.Writer, p PoseMessage) {
	fmt.Fprintf(w, "[%s] ROLL=%6.2f  PITCH=%6.2f  |g|=%.3f\n",
		p.Device, p.Pose.Roll, p.Pose.Pitch, p.Accel.Magnitude())
}
