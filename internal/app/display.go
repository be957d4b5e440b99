package app

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/adxl345_driver/internal/config"
	"github.com/relabs-tech/adxl345_driver/internal/regbus"
)

// DisplayData holds the latest data for display
type DisplayData struct {
	mu sync.RWMutex

	batch     SampleBatch
	haveBatch bool

	pose     PoseMessage
	havePose bool
}

func (d *DisplayData) setBatch(b SampleBatch) {
	d.mu.Lock()
	d.batch, d.haveBatch = b, true
	d.mu.Unlock()
}

func (d *DisplayData) setPose(p PoseMessage) {
	d.mu.Lock()
	d.pose, d.havePose = p, true
	d.mu.Unlock()
}

// RunDisplay shows the latest sample or pose of one device on an SSD1306
// until ctx ends.
func RunDisplay(ctx context.Context) error {
	cfg := config.Get()

	bus, err := regbus.OpenI2CBus(cfg.I2CBus)
	if err != nil {
		return err
	}
	defer bus.Close()

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: initialized on %s", bus)

	if err := drawLines(dev, []string{"ADXL345", cfg.DisplayDevice, "Waiting..."}); err != nil {
		log.Printf("display: error showing splash: %v", err)
	}

	data := &DisplayData{}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)
	log.Printf("display: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := subscribeForContent(client, cfg, data); err != nil {
		return fmt.Errorf("failed to subscribe for display: %w", err)
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Println("display: starting update loop")

	for {
		select {
		case <-ctx.Done():
			dev.Halt()
			return nil
		case <-ticker.C:
		}
		if err := drawLines(dev, screenLines(cfg.DisplayContent, cfg.DisplayDevice, data)); err != nil {
			log.Printf("display: error updating display: %v", err)
		}
	}
}

func subscribeForContent(client mqtt.Client, cfg *config.Config, data *DisplayData) error {
	switch cfg.DisplayContent {
	case config.DisplaySample:
		topic := DeviceTopic(cfg.TopicSamples, cfg.DisplayDevice)
		return subscribeJSON(client, topic, "display", func(b SampleBatch) { data.setBatch(b) })
	case config.DisplayPose:
		topic := DeviceTopic(cfg.TopicPose, cfg.DisplayDevice)
		return subscribeJSON(client, topic, "display", func(p PoseMessage) { data.setPose(p) })
	}
	return fmt.Errorf("unknown display content type: %s", cfg.DisplayContent)
}

// screenLines formats the current data as up to four 18-character lines.
func screenLines(content, device string, data *DisplayData) []string {
	data.mu.RLock()
	defer data.mu.RUnlock()

	switch content {
	case config.DisplaySample:
		if !data.haveBatch {
			return []string{device, "Samples", "Waiting..."}
		}
		b := data.batch
		if len(b.Samples) > 0 {
			s := b.Samples[len(b.Samples)-1]
			return []string{
				device,
				fmt.Sprintf("X: %6d", s.X),
				fmt.Sprintf("Y: %6d", s.Y),
				fmt.Sprintf("Z: %6d", s.Z),
			}
		}
		if len(b.Readings) > 0 {
			return []string{
				device,
				fmt.Sprintf("%s: %6d", b.Axis, b.Readings[len(b.Readings)-1]),
			}
		}
		return []string{device, "Empty batch"}
	default:
		if !data.havePose {
			return []string{device, "Orientation", "Waiting..."}
		}
		p := data.pose
		return []string{
			device,
			fmt.Sprintf("R: %6.1f", p.Pose.Roll),
			fmt.Sprintf("P: %6.1f", p.Pose.Pitch),
			fmt.Sprintf("|g|: %5.2f", p.Accel.Magnitude()),
		}
	}
}

// renderLines draws lines on a blank 128x64 frame, 13 pixels apart.
func renderLines(lines []string) *image1bit.VerticalLSB {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{image1bit.On},
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		if i == 4 {
			break
		}
		drawer.Dot = fixed.P(0, 13*(i+1))
		drawer.DrawString(line)
	}
	return img
}

func drawLines(dev *ssd1306.Dev, lines []string) error {
	return dev.Draw(dev.Bounds(), renderLines(lines), image.Point{})
}
