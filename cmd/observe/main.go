package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"

	"fluidcraft.ai/internal/protocol"
	simenc "fluidcraft.ai/internal/sim/encoding"
)

// observe connects as a read-only console and renders a slice of the fluid
// field. Each cell shows its level 0-8; color picks the fluid species.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "observe", "console name")
		radius = flag.Int("radius", 8, "observation radius")
		sliceY = flag.Int("y", 0, "slice offset from view center (vertical)")
		every  = flag.Uint64("every", 10, "render every N ticks")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[observe] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		Name:            *name,
		Capabilities: protocol.HelloCapabilities{
			ObsRadius: *radius,
		},
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	var fluidPalette []string

	for {
		select {
		case <-stop:
			return
		default:
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s world=%s tick_rate=%d seed=%d", w.SessionID, w.WorldID, w.WorldParams.TickRateHz, w.WorldParams.Seed)

		case protocol.TypeCatalog:
			var c protocol.CatalogMsg
			if err := json.Unmarshal(msg, &c); err != nil {
				continue
			}
			if c.Name == "fluid_palette" {
				fluidPalette = paletteStrings(c.Data)
			}

		case protocol.TypeObs:
			var obs protocol.ObsMsg
			if err := json.Unmarshal(msg, &obs); err != nil {
				continue
			}
			if *every > 0 && obs.Tick%*every != 0 {
				continue
			}
			renderSlice(&obs, fluidPalette, *sliceY)
		}
	}
}

// fluidsInPlane returns the distinct non-air fluid ids in a plane, ascending.
func fluidsInPlane(words []uint16) []uint16 {
	var seen [32]bool
	for _, w := range words {
		id := w >> 5
		level := (w >> 1) & 0x0F
		if id != 0 && level != 0 && id < 32 {
			seen[id] = true
		}
	}
	var out []uint16
	for id, ok := range seen {
		if ok {
			out = append(out, uint16(id))
		}
	}
	return out
}

func paletteStrings(data interface{}) []string {
	raw, ok := data.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, _ := v.(string)
		out = append(out, s)
	}
	return out
}

var fluidStyles = []color.Style{
	{color.FgGray},              // sentinel / unknown
	{color.FgBlue},              // WATER
	{color.FgCyan},              // BRINE
	{color.FgRed, color.OpBold}, // LAVA
	{color.FgYellow},            // SLURRY
	{color.FgMagenta},
	{color.FgGreen},
}

func styleFor(fluidID uint16) color.Style {
	if int(fluidID) < len(fluidStyles) {
		return fluidStyles[fluidID]
	}
	return fluidStyles[0]
}

// renderSlice prints the horizontal plane at the requested offset. The region
// streams scan dy outer, dz middle, dx inner; fluid words pack
// id<<5 | level<<1 | static.
func renderSlice(obs *protocol.ObsMsg, fluidPalette []string, sliceY int) {
	if obs.Region.Encoding != "RLE" || obs.Region.Fluids == "" {
		// Delta frames need a baseline; the server falls back to RLE often
		// enough (every view move and first frame) that skipping is fine.
		return
	}
	fluids, err := simenc.DecodeRLE(obs.Region.Fluids)
	if err != nil {
		return
	}
	r := obs.Region.Radius
	dim := 2*r + 1
	if len(fluids) != dim*dim*dim || sliceY < -r || sliceY > r {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "tick=%d center=%v y=%+d pending=%d ran=%d\n",
		obs.Tick, obs.Region.Center, sliceY, obs.Queue.Pending, obs.Queue.Ran)

	plane := (sliceY + r) * dim * dim
	for dz := 0; dz < dim; dz++ {
		for dx := 0; dx < dim; dx++ {
			word := fluids[plane+dz*dim+dx]
			id := word >> 5
			level := (word >> 1) & 0x0F
			if id == 0 || level == 0 {
				b.WriteString(" .")
				continue
			}
			b.WriteString(styleFor(id).Sprintf(" %d", level))
		}
		b.WriteByte('\n')
	}

	seen := fluidsInPlane(fluids[plane : plane+dim*dim])
	if len(seen) > 0 {
		b.WriteString(" ")
		for _, id := range seen {
			name := fmt.Sprintf("#%d", id)
			if int(id) < len(fluidPalette) && fluidPalette[id] != "" {
				name = fluidPalette[id]
			}
			b.WriteString(styleFor(id).Sprintf(" %s", name))
		}
		b.WriteByte('\n')
	}

	for _, ev := range obs.Events {
		typ, _ := ev["type"].(string)
		if typ == "" || typ == "ACTION_RESULT" {
			continue
		}
		fmt.Fprintf(&b, "  event %s %v\n", typ, ev)
	}

	fmt.Print(b.String())
}
