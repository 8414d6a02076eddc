package notify

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bluestar-b/wplace-dl-with-osm-bg/internal/mosaic"
)

// SendMosaic uploads the finished mosaic PNG to a Discord channel with a
// summary embed. It uses the REST API only; no gateway connection is opened.
func SendMosaic(token, channelID, path, target string, st mosaic.Stats, elapsed time.Duration) error {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	filename := filepath.Base(path)
	embed := &discordgo.MessageEmbed{
		Title: fmt.Sprintf("🗺️ %s", target),
		Color: 0x3498DB,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Tiles",
				Value:  fmt.Sprintf("%d rendered / %d total", st.Rendered, st.Total),
				Inline: true,
			},
			{
				Name:   "Canvas content",
				Value:  fmt.Sprintf("%d/%d tiles", st.OverlayTiles, st.Total),
				Inline: true,
			},
			{
				Name:   "Render time",
				Value:  elapsed.Round(time.Second).String(),
				Inline: true,
			},
		},
		Image: &discordgo.MessageEmbedImage{
			URL: "attachment://" + filename,
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Map data © OpenStreetMap contributors",
		},
		Timestamp: time.Now().Format(time.RFC3339),
	}

	_, err = s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{embed},
		Files: []*discordgo.File{
			{
				Name:        filename,
				ContentType: "image/png",
				Reader:      f,
			},
		},
	})
	return err
}
