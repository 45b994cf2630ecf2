package main

import (
	"estate-live/domain/comment"
	"fmt"
	"io"
	"strconv"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
)

func render(w io.Writer, comments []comment.Comment, isLiked func(string) bool) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"ID", "Author", "Text", "Likes", "Liked", "At"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, c := range comments {
		table.Append([]string{
			c.ID,
			author(c.User),
			c.Text,
			strconv.Itoa(c.Likes),
			lo.Ternary(isLiked(c.ID), "♥", ""),
			c.CreatedAt.Format("15:04:05"),
		})
		for _, r := range c.Replies {
			table.Append([]string{"  ↳ " + r.ID, author(r.User), r.Text, "", "", r.CreatedAt.Format("15:04:05")})
		}
	}
	table.Render()
}

func author(s *comment.UserSnapshot) string {
	if s == nil {
		return comment.DefaultUsername
	}
	return s.Username
}

func printMessage(from string, data []byte) {
	fmt.Println(color.New(color.FgMagenta, color.OpBold).Render("✉ "+from) + " " + string(data))
}

func printError(err error) {
	fmt.Println(color.Red.Render("✗ " + err.Error()))
}

func printOK(msg string) {
	fmt.Println(color.Green.Render("✓ " + msg))
}

const help = `commands:
  list                          show the thread
  comment <text>                add a comment
  edit <commentId> <text>       edit a comment
  reply <commentId> <text>      reply to a comment
  delete <commentId>            delete a comment without replies
  unreply <replyId> <commentId> delete a reply
  like <commentId>              like or unlike a comment
  dm <userId> <text>            send a direct message
  quit`
