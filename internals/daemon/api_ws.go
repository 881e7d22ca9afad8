// Copyright (c) 2026 Scott McLesly
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License version 3 as
// published by the Free Software Foundation.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package daemon

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/scottmclesly/fishtankcontroller-sub000/internals/logger"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord/otastate"
	"github.com/scottmclesly/fishtankcontroller-sub000/internals/overlord/sensorstate"
)

const wsPushInterval = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// wsFrame is one push on the live stream: the session state plus the
// latest readings.
type wsFrame struct {
	OTA      otastate.Status       `json:"ota"`
	Readings []sensorstate.Reading `json:"readings"`
}

// serveWebsocket pushes a status frame every second until the client
// goes away. Reads are drained only to detect the close.
func (d *Daemon) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debugf("cannot upgrade websocket: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPushInterval)
	defer ticker.Stop()
	for {
		frame := wsFrame{
			OTA:      d.overlord.UpdateManager().Status(),
			Readings: d.overlord.SensorManager().Readings(),
		}
		if err := conn.WriteJSON(frame); err != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-closed:
			return
		}
	}
}
