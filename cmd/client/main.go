package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/JJ-Intelligence/Reversi-Backend/pkg/client"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/comms"
	"github.com/JJ-Intelligence/Reversi-Backend/pkg/game"
	"go.uber.org/zap"
)

var serverURL = flag.String("url", getEnvOrDefault("SERVER_URL", "ws://localhost:8080/ws"), "Websocket URL of the server")

func getEnvOrDefault(key, def string) string {
	if env, ok := os.LookupEnv(key); ok {
		return env
	}
	return def
}

const usage = `commands:
  create          create a room and join it
  join <id>       join an existing room
  leave           leave the current room
  place <r> <c>   place a piece at row r, column c
  board           print the board
  quit`

func main() {
	flag.Parse()
	log, _ := zap.NewDevelopment()
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	c, err := client.Dial(ctx, log, *serverURL)
	cancel()
	if err != nil {
		log.Fatal("Unable to connect", zap.String("url", *serverURL), zap.Error(err))
	}
	defer c.Close()
	fmt.Printf("connected as %s\n%s\n", c.ID(), usage)

	go printUpdates(c)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" {
			return
		}
		if err := runCommand(c, fields); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func runCommand(c *client.Client, fields []string) error {
	switch fields[0] {
	case "create":
		return c.CreateRoom()
	case "join":
		if len(fields) != 2 {
			return fmt.Errorf("usage: join <id>")
		}
		return c.JoinRoom(fields[1])
	case "leave":
		return c.LeaveRoom()
	case "place":
		if len(fields) != 3 {
			return fmt.Errorf("usage: place <r> <c>")
		}
		row, err := strconv.Atoi(fields[1])
		if err != nil {
			return err
		}
		col, err := strconv.Atoi(fields[2])
		if err != nil {
			return err
		}
		flipped, err := c.Place(game.Pos(row, col))
		if err != nil {
			return err
		}
		fmt.Printf("captured %v\n%s", flipped, c.Board())
		return nil
	case "board":
		fmt.Print(c.Board())
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", fields[0], usage)
	}
}

func printUpdates(c *client.Client) {
	for {
		select {
		case <-c.Done():
			if c.Err() != client.ErrClosed {
				fmt.Println("disconnected:", c.Err())
				os.Exit(1)
			}
			return
		case e := <-c.Updates:
			switch e := e.(type) {
			case comms.RoomInfo:
				fmt.Printf("room %s members %v\n", e.ID, e.Members)
			case comms.GameMove:
				fmt.Printf("player %d placed at %s\n%s", e.Player, e.Position, c.Board())
			}
		}
	}
}
