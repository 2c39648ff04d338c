// Terrain preview tool - interactive obstacle noise tuning with sliders.
//
// Usage: go run ./cmd/terrainpreview [-config path]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/herd/bake"
	"github.com/pthm-cable/herd/config"
	"github.com/pthm-cable/herd/maps"
)

const (
	windowWidth  = 1000
	windowHeight = 720
	previewSize  = 512
	panelWidth   = windowWidth - previewSize - 30
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	flag.Parse()

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()
	area := bake.AreaFromConfig(cfg)
	defaults := bake.TerrainFromConfig(cfg)
	params := defaults

	rl.InitWindow(windowWidth, windowHeight, "Terrain Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(30)

	img := rl.GenImageColor(area.Size, area.Size, rl.Black)
	texture := rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	defer rl.UnloadTexture(texture)
	pixels := make([]color.RGBA, area.Size*area.Size)

	var terrain *bake.TerrainHandle
	needsRegen := true
	status := ""

	for !rl.WindowShouldClose() {
		if needsRegen {
			h, err := params.Initialize(area)
			if err != nil {
				log.Fatalf("baking terrain: %v", err)
			}
			terrain = h.(*bake.TerrainHandle)
			updateTexture(texture, terrain.Layer(), params.Channel, pixels)
			needsRegen = false
		}

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)

		// Row 0 is the south edge, so flip vertically to put north up.
		rl.DrawTexturePro(
			texture,
			rl.Rectangle{X: 0, Y: 0, Width: float32(area.Size), Height: -float32(area.Size)},
			rl.Rectangle{X: 10, Y: 10, Width: previewSize, Height: previewSize},
			rl.Vector2{X: 0, Y: 0},
			0,
			rl.White,
		)
		rl.DrawRectangleLines(10, 10, previewSize, previewSize, rl.DarkGray)

		statsY := int32(previewSize + 25)
		rl.DrawText(fmt.Sprintf("Obstacle coverage: %.1f%%", terrain.Coverage()*100), 15, statsY, 16, rl.DarkGray)
		rl.DrawText(fmt.Sprintf("Texture: %d x %d  Side: %.0f", area.Size, area.Size, area.Physical), 15, statsY+20, 16, rl.DarkGray)
		if status != "" {
			rl.DrawText(status, 15, statsY+40, 16, rl.DarkGreen)
		}

		panelX := float32(previewSize + 20)
		panelY := float32(10)

		rl.DrawText("Terrain Parameters", int32(panelX), int32(panelY), 20, rl.DarkGray)
		panelY += 35

		slider := func(label, lo, hi string, value, from, to float32, format string) float32 {
			rl.DrawText(label, int32(panelX), int32(panelY), 14, rl.Gray)
			panelY += 18
			v := gui.SliderBar(
				rl.Rectangle{X: panelX + 20, Y: panelY, Width: float32(panelWidth - 110), Height: 20},
				lo, hi, value, from, to,
			)
			rl.DrawText(fmt.Sprintf(format, value), int32(panelX+float32(panelWidth-70)), int32(panelY+2), 16, rl.DarkGray)
			panelY += 35
			return v
		}

		if v := float64(slider("Scale (noise frequency per texel)", "0.01", "0.3", float32(params.Frequency), 0.01, 0.3, "%.3f")); v != float64(float32(params.Frequency)) {
			params.Frequency = v
			needsRegen = true
		}
		if v := int(slider("Octaves", "1", "6", float32(params.Octaves), 1, 6, "%.0f") + 0.5); v != params.Octaves {
			params.Octaves = v
			needsRegen = true
		}
		if v := float64(slider("Threshold (higher = fewer obstacles)", "0", "1", float32(params.Threshold), 0, 1, "%.2f")); v != float64(float32(params.Threshold)) {
			params.Threshold = v
			needsRegen = true
		}
		if v := uint8(slider("Obstacle heat", "0", "255", float32(params.ObstacleHeat), 0, 255, "%.0f")); v != params.ObstacleHeat {
			params.ObstacleHeat = v
			needsRegen = true
		}
		if v := int64(slider("Seed", "0", "9999", float32(params.Seed), 0, 9999, "%.0f")); v != params.Seed {
			params.Seed = v
			needsRegen = true
		}
		panelY += 10

		if gui.Button(rl.Rectangle{X: panelX, Y: panelY, Width: 120, Height: 30}, "Random Seed") {
			params.Seed = int64(rl.GetRandomValue(0, 9999))
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 130, Y: panelY, Width: 120, Height: 30}, "Reset All") {
			params = defaults
			needsRegen = true
		}
		if gui.Button(rl.Rectangle{X: panelX + 260, Y: panelY, Width: 120, Height: 30}, "Save PNG") {
			status = savePNG(terrain.Layer())
		}
		panelY += 55

		yaml := terrainYAML(params)
		rl.DrawText("YAML Config:", int32(panelX), int32(panelY), 16, rl.DarkGray)
		panelY += 25
		rl.DrawText(yaml, int32(panelX), int32(panelY), 14, rl.Gray)

		rl.DrawText("Press C to copy YAML to clipboard", int32(panelX), int32(windowHeight-30), 12, rl.LightGray)
		if rl.IsKeyPressed(rl.KeyC) {
			rl.SetClipboardText(yaml)
			status = "YAML copied"
		}

		rl.EndDrawing()
	}
}

func terrainYAML(t bake.TerrainBaker) string {
	return fmt.Sprintf(`bake:
  terrain:
    seed: %d
    scale: %.3f
    octaves: %d
    threshold: %.2f
    obstacle_heat: %d`,
		t.Seed, t.Frequency, t.Octaves, t.Threshold, t.ObstacleHeat)
}

func savePNG(m *maps.SpatialMap) string {
	f, err := os.Create("terrain.png")
	if err != nil {
		return err.Error()
	}
	defer f.Close()
	if err := bake.WritePNG(f, m); err != nil {
		return err.Error()
	}
	return "saved terrain.png"
}

// updateTexture shows obstacles dark on a light ground.
func updateTexture(texture rl.Texture2D, m *maps.SpatialMap, ch int, pixels []color.RGBA) {
	for i := range pixels {
		v := m.Data[i*maps.Channels+ch]
		shade := 235 - uint8(uint16(v)*200/255)
		pixels[i] = color.RGBA{R: shade, G: shade, B: shade - 10, A: 255}
	}
	rl.UpdateTexture(texture, pixels)
}
