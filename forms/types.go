// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package forms

import (
	"net/http"
	"strings"
)

// TodoForm backs the create and edit pages.
type TodoForm struct {
	Title       string `form:"title" validate:"notblank,max=200"`
	Description string `form:"description"`
	Completed   bool   `form:"completed"`
}

func ParseTodoForm(r *http.Request) (TodoForm, error) {
	if err := r.ParseForm(); err != nil {
		return TodoForm{}, err
	}
	return TodoForm{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		Completed:   checkbox(r, "completed"),
	}, nil
}

// RegisterForm backs the to-do app's quick registration page.
type RegisterForm struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Password1 string `form:"password1" validate:"required,min=8,notnumeric"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

func ParseRegisterForm(r *http.Request) (RegisterForm, error) {
	if err := r.ParseForm(); err != nil {
		return RegisterForm{}, err
	}
	return RegisterForm{
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}, nil
}

// SignUpForm backs the account signup page; email is mandatory there.
type SignUpForm struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"required,email,max=254"`
	Password1 string `form:"password1" validate:"required,min=8,notnumeric"`
	Password2 string `form:"password2" validate:"required,eqfield=Password1"`
}

func ParseSignUpForm(r *http.Request) (SignUpForm, error) {
	if err := r.ParseForm(); err != nil {
		return SignUpForm{}, err
	}
	return SignUpForm{
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		Password1: r.PostFormValue("password1"),
		Password2: r.PostFormValue("password2"),
	}, nil
}

type LoginForm struct {
	Username string `form:"username" validate:"required"`
	Password string `form:"password" validate:"required"`
	Remember bool   `form:"remember"`
	Next     string `form:"next"`
}

func ParseLoginForm(r *http.Request) (LoginForm, error) {
	if err := r.ParseForm(); err != nil {
		return LoginForm{}, err
	}
	return LoginForm{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
		Remember: checkbox(r, "remember"),
		Next:     r.FormValue("next"),
	}, nil
}
